package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/gophaccount/internal/common"
	"github.com/dmitrijs2005/gophaccount/internal/filex"
	"github.com/dmitrijs2005/gophaccount/internal/logging"
	"github.com/dmitrijs2005/gophaccount/internal/server/auth"
	"github.com/dmitrijs2005/gophaccount/internal/server/config"
	"github.com/dmitrijs2005/gophaccount/internal/server/media"
	"github.com/dmitrijs2005/gophaccount/internal/server/models"
	"github.com/dmitrijs2005/gophaccount/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophaccount/internal/server/repositories/users"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// RegisterInput carries a registration request. AvatarPath and
// CoverImagePath point at uploaded files in the temporary upload directory.
type RegisterInput struct {
	FullName       string `json:"fullName"`
	Email          string `json:"email"`
	UserName       string `json:"username"`
	Password       string `json:"password"`
	AvatarPath     string `json:"-"`
	CoverImagePath string `json:"-"`
}

func (in *RegisterInput) normalize() {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = normalizeIdentity(in.Email)
	in.UserName = normalizeIdentity(in.UserName)
}

// usernamePattern keeps usernames disjoint from emails, so a login
// identifier resolves to at most one account.
var usernamePattern = regexp.MustCompile(`^[^@\s]+$`)

func maxBytes(n int) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > n {
			return fmt.Errorf("must be at most %d bytes", n)
		}
		return nil
	}
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FullName, validation.Required),
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.UserName, validation.Required,
			validation.Match(usernamePattern).Error("must not contain @ or spaces")),
		validation.Field(&in.Password, validation.Required, validation.By(maxBytes(auth.MaxPasswordBytes))),
	)
}

type accountInput struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (in accountInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FullName, validation.Required),
		validation.Field(&in.Email, validation.Required, is.Email),
	)
}

type passwordInput struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (in passwordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.OldPassword, validation.Required),
		validation.Field(&in.NewPassword, validation.Required, validation.By(maxBytes(auth.MaxPasswordBytes))),
	)
}

func validationError(err error) error {
	return common.WithMessage(common.ErrValidation, err.Error())
}

// UserService registers users and changes their profile. None of its
// operations touch the stored refresh token.
type UserService struct {
	repomanager       repomanager.RepositoryManager
	uploader          media.Uploader
	bcryptCost        int
	avatarRequired    bool
	coverImageEnabled bool
	log               logging.Logger
}

func NewUserService(m repomanager.RepositoryManager, uploader media.Uploader, cfg *config.Config, log logging.Logger) *UserService {
	return &UserService{
		repomanager:       m,
		uploader:          uploader,
		bcryptCost:        cfg.BcryptCost,
		avatarRequired:    cfg.AvatarRequired,
		coverImageEnabled: cfg.CoverImageEnabled,
		log:               log.With("module", "users"),
	}
}

// discard removes temp files that were not handed to the uploader.
func (s *UserService) discard(ctx context.Context, paths ...string) {
	for _, p := range paths {
		if err := filex.Remove(p); err != nil {
			s.log.Warn(ctx, "failed to remove temp file", "path", p, "error", err)
		}
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.PublicUser, error) {
	defer s.discard(ctx, in.AvatarPath, in.CoverImagePath)

	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}
	if s.avatarRequired && in.AvatarPath == "" {
		return nil, common.WithMessage(common.ErrValidation, "avatar file is required")
	}

	repo := s.repomanager.Users()
	if _, err := repo.FindByUsernameOrEmail(ctx, in.UserName, in.Email); err == nil {
		return nil, common.WithMessage(common.ErrorAlreadyExists, "user with email or username already exists")
	} else if !errors.Is(err, common.ErrorNotFound) {
		s.log.Error(ctx, "register: duplicate check failed", "error", err)
		return nil, common.ErrorInternal
	}

	var avatarURL string
	if in.AvatarPath != "" {
		url, err := s.uploader.Upload(ctx, in.AvatarPath)
		if err != nil {
			s.log.Error(ctx, "register: avatar upload failed", "error", err)
			return nil, common.WithMessage(common.ErrUploadFailed, "failed to upload avatar")
		}
		avatarURL = url
	}

	var coverURL string
	if s.coverImageEnabled && in.CoverImagePath != "" {
		url, err := s.uploader.Upload(ctx, in.CoverImagePath)
		if err != nil {
			s.log.Warn(ctx, "register: cover image upload failed", "error", err)
		} else {
			coverURL = url
		}
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if errors.Is(err, common.ErrValidation) {
		return nil, err
	}
	if err != nil {
		s.log.Error(ctx, "register: hash password failed", "error", err)
		return nil, common.ErrorInternal
	}

	var created *models.User
	err = s.repomanager.WithTx(ctx, func(ctx context.Context, repo users.Repository) error {
		if _, err := repo.FindByUsernameOrEmail(ctx, in.UserName, in.Email); err == nil {
			return common.ErrorAlreadyExists
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		u, err := repo.Create(ctx, &models.User{
			UserName:     in.UserName,
			Email:        in.Email,
			FullName:     in.FullName,
			Avatar:       avatarURL,
			CoverImage:   coverURL,
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.WithMessage(common.ErrorAlreadyExists, "user with email or username already exists")
		}
		s.log.Error(ctx, "register: create user failed", "error", err)
		return nil, common.ErrorInternal
	}

	s.log.Info(ctx, "user registered", "user_id", created.ID)
	return created.Public(), nil
}

func (s *UserService) GetCurrentUser(ctx context.Context, userID string) (*models.PublicUser, error) {
	u, err := s.repomanager.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, s.storeError(ctx, "get current user", err)
	}
	return u.Public(), nil
}

// ChangePassword replaces the password hash after checking oldPassword.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	in := passwordInput{OldPassword: oldPassword, NewPassword: newPassword}
	if err := in.Validate(); err != nil {
		return validationError(err)
	}

	repo := s.repomanager.Users()
	u, err := repo.FindByID(ctx, userID)
	if err != nil {
		return s.storeError(ctx, "change password", err)
	}

	if err := auth.ComparePasswordAndHash(oldPassword, u.PasswordHash); err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			return common.WithMessage(common.ErrInvalidCredentials, "invalid old password")
		}
		s.log.Error(ctx, "change password: compare failed", "user_id", userID, "error", err)
		return common.ErrorInternal
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if errors.Is(err, common.ErrValidation) {
		return err
	}
	if err != nil {
		s.log.Error(ctx, "change password: hash failed", "user_id", userID, "error", err)
		return common.ErrorInternal
	}

	if _, err := repo.UpdateFields(ctx, userID, users.Fields{PasswordHash: &hash}); err != nil {
		return s.storeError(ctx, "change password", err)
	}
	s.log.Info(ctx, "password changed", "user_id", userID)
	return nil
}

// UpdateAccount sets the full name and email; both are required.
func (s *UserService) UpdateAccount(ctx context.Context, userID, fullName, email string) (*models.PublicUser, error) {
	in := accountInput{FullName: strings.TrimSpace(fullName), Email: normalizeIdentity(email)}
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}

	u, err := s.repomanager.Users().UpdateFields(ctx, userID, users.Fields{
		FullName: &in.FullName,
		Email:    &in.Email,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.WithMessage(common.ErrorAlreadyExists, "email is already in use")
		}
		return nil, s.storeError(ctx, "update account", err)
	}
	return u.Public(), nil
}

func (s *UserService) UpdateAvatar(ctx context.Context, userID, localPath string) (*models.PublicUser, error) {
	if localPath == "" {
		return nil, common.WithMessage(common.ErrValidation, "avatar file is missing")
	}
	url, err := s.uploader.Upload(ctx, localPath)
	if err != nil {
		s.log.Error(ctx, "update avatar: upload failed", "user_id", userID, "error", err)
		return nil, common.WithMessage(common.ErrUploadFailed, "failed to upload avatar")
	}

	u, err := s.repomanager.Users().UpdateFields(ctx, userID, users.Fields{Avatar: &url})
	if err != nil {
		return nil, s.storeError(ctx, "update avatar", err)
	}
	return u.Public(), nil
}

func (s *UserService) UpdateCoverImage(ctx context.Context, userID, localPath string) (*models.PublicUser, error) {
	if localPath == "" {
		return nil, common.WithMessage(common.ErrValidation, "cover image file is missing")
	}
	url, err := s.uploader.Upload(ctx, localPath)
	if err != nil {
		s.log.Error(ctx, "update cover image: upload failed", "user_id", userID, "error", err)
		return nil, common.WithMessage(common.ErrUploadFailed, "failed to upload cover image")
	}

	u, err := s.repomanager.Users().UpdateFields(ctx, userID, users.Fields{CoverImage: &url})
	if err != nil {
		return nil, s.storeError(ctx, "update cover image", err)
	}
	return u.Public(), nil
}

// storeError passes common.ErrorNotFound through and hides anything else
// behind common.ErrorInternal.
func (s *UserService) storeError(ctx context.Context, op string, err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrorNotFound
	}
	s.log.Error(ctx, op+": store failed", "error", err)
	return common.ErrorInternal
}
