package common

// Cookie names set on successful login and refresh, cleared on logout.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)

// AuthorizationHeaderName carries "Bearer <access token>" when the client
// does not send cookies.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the expected authorization scheme.
const BearerScheme = "Bearer"
