package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/dmitrijs2005/gophaccount/internal/common"
	"github.com/dmitrijs2005/gophaccount/internal/filex"
	"github.com/dmitrijs2005/gophaccount/internal/logging"
	"github.com/dmitrijs2005/gophaccount/internal/server/models"
	"github.com/dmitrijs2005/gophaccount/internal/server/services"
)

// Sessions is the token lifecycle the handlers depend on.
type Sessions interface {
	Login(ctx context.Context, identifier, password string) (*services.LoginResult, error)
	Logout(ctx context.Context, userID string) error
	Refresh(ctx context.Context, presented string) (*services.TokenPair, error)
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// Accounts is the profile side of the service.
type Accounts interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.PublicUser, error)
	GetCurrentUser(ctx context.Context, userID string) (*models.PublicUser, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	UpdateAccount(ctx context.Context, userID, fullName, email string) (*models.PublicUser, error)
	UpdateAvatar(ctx context.Context, userID, localPath string) (*models.PublicUser, error)
	UpdateCoverImage(ctx context.Context, userID, localPath string) (*models.PublicUser, error)
}

// Options configures request parsing and cookies.
type Options struct {
	UploadDir     string
	MaxUploadSize int64
	CookieSecure  bool
}

type Handler struct {
	sessions      Sessions
	accounts      Accounts
	uploadDir     string
	maxUploadSize int64
	cookieSecure  bool
	logger        logging.Logger
}

func NewHandler(s Sessions, a Accounts, opts Options, l logging.Logger) *Handler {
	return &Handler{
		sessions:      s,
		accounts:      a,
		uploadDir:     opts.UploadDir,
		maxUploadSize: opts.MaxUploadSize,
		cookieSecure:  opts.CookieSecure,
		logger:        l.With("module", "http_handler"),
	}
}

type loginData struct {
	User         *models.PublicUser `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

// readFields collects the string fields of a JSON, multipart or urlencoded
// body. Non-string JSON values are ignored.
func (h *Handler) readFields(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}

	fields := map[string]string{}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mt {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
			return nil, bodyError(err)
		}
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, bodyError(err)
		}
		for k, v := range r.PostForm {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}
	default:
		raw := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, bodyError(err)
		}
		for k, v := range raw {
			if s, ok := v.(string); ok {
				fields[k] = s
			}
		}
	}
	return fields, nil
}

func bodyError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return common.WithMessage(common.ErrValidation, "request body is too large")
	}
	return common.WithMessage(common.ErrValidation, "invalid request body")
}

// saveFormFile stores the multipart file in field under the upload directory.
// A missing file yields an empty path.
func (h *Handler) saveFormFile(r *http.Request, field string) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	fhs := r.MultipartForm.File[field]
	if len(fhs) == 0 {
		return "", nil
	}
	f, err := fhs[0].Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return filex.SaveTemp(h.uploadDir, fhs[0].Filename, f)
}

func cleanupMultipart(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	defer cleanupMultipart(r)

	f, err := h.readFields(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	in := services.RegisterInput{
		FullName: firstNonEmpty(f["fullName"], f["fullname"]),
		Email:    f["email"],
		UserName: f["username"],
		Password: f["password"],
	}

	if in.AvatarPath, err = h.saveFormFile(r, "avatar"); err != nil {
		h.fail(w, r, err)
		return
	}
	if in.CoverImagePath, err = h.saveFormFile(r, "coverImage"); err != nil {
		_ = filex.Remove(in.AvatarPath)
		h.fail(w, r, err)
		return
	}

	user, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, user, "user registered successfully")
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	f, err := h.readFields(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	identifier := firstNonEmpty(f["identifier"], f["username"], f["email"])
	res, err := h.sessions.Login(r.Context(), identifier, f["password"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.setTokenCookies(w, res.TokenPair)
	respond(w, http.StatusOK, loginData{
		User:         res.User,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}, "user logged in successfully")
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	if err := h.sessions.Logout(r.Context(), user.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.clearTokenCookies(w)
	respond(w, http.StatusOK, nil, "user logged out")
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	presented := cookieValue(r, common.RefreshTokenCookieName)
	if presented == "" {
		f, err := h.readFields(w, r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		presented = f["refreshToken"]
	}

	pair, err := h.sessions.Refresh(r.Context(), presented)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.setTokenCookies(w, *pair)
	respond(w, http.StatusOK, pair, "access token refreshed")
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	f, err := h.readFields(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), user.ID, f["oldPassword"], f["newPassword"]); err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, nil, "password changed successfully")
}

func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	current, err := h.accounts.GetCurrentUser(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, current, "current user fetched successfully")
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	f, err := h.readFields(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	updated, err := h.accounts.UpdateAccount(r.Context(), user.ID, firstNonEmpty(f["fullName"], f["fullname"]), f["email"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, updated, "account details updated successfully")
}

func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", h.accounts.UpdateAvatar, "avatar updated successfully")
}

func (h *Handler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", h.accounts.UpdateCoverImage, "cover image updated successfully")
}

type imageUpdate func(ctx context.Context, userID, localPath string) (*models.PublicUser, error)

func (h *Handler) updateImage(w http.ResponseWriter, r *http.Request, field string, update imageUpdate, message string) {
	defer cleanupMultipart(r)
	user, _ := UserFromContext(r.Context())

	if _, err := h.readFields(w, r); err != nil {
		h.fail(w, r, err)
		return
	}
	path, err := h.saveFormFile(r, field)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	updated, err := update(r.Context(), user.ID, path)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, updated, message)
}
