package service

// Stable machine-readable failure codes returned to callers and recorded
// alongside audit entries.
const (
	CodeAppNotFound       = "APP_NOT_FOUND"
	CodeAppOffline        = "APP_OFFLINE"
	CodeAppMaintenance    = "APP_MAINTENANCE"
	CodeAppUnavailable    = "APP_UNAVAILABLE"
	CodeInvalidCreds      = "INVALID_CREDENTIALS"
	CodeUserBanned        = "USER_BANNED"
	CodeSubExpired        = "SUBSCRIPTION_EXPIRED"
	CodeHwidMismatch      = "HWID_MISMATCH"
	CodeInvalidKey        = "INVALID_KEY"
	CodeKeyDisabled       = "KEY_DISABLED"
	CodeKeyExpired        = "KEY_EXPIRED"
	CodeKeyNoUses         = "KEY_NO_USES"
	CodeMaxActivations    = "MAX_ACTIVATIONS"
	CodeUsernameExists    = "USERNAME_EXISTS"
	CodeEmailExists       = "EMAIL_EXISTS"
	CodeUserNotFound      = "USER_NOT_FOUND"
	CodeKeyNotFound       = "KEY_NOT_FOUND"
	CodeKeyNoUser         = "NO_USER"
	CodeSessionNotFound   = "SESSION_NOT_FOUND"
	CodeSessionExpired    = "SESSION_EXPIRED"
	CodeAdminNotFound     = "ADMIN_NOT_FOUND"
	CodeInvalidAppCreds   = "INVALID_APP_CREDENTIALS"
	CodeInvalidCount      = "INVALID_COUNT"
	CodeInvalidParams     = "INVALID_PARAMS"
)
