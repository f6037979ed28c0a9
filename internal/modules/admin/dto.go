package admin

// SettingsResponse reports lifetimes in whole seconds.
type SettingsResponse struct {
	AccessTokenLifetime  int64 `json:"access_token_lifetime"`
	RefreshTokenLifetime int64 `json:"refresh_token_lifetime"`
}

// UpdateSettingsRequest changes any subset of lifetimes, in seconds.
type UpdateSettingsRequest struct {
	AccessTokenLifetime  *int64 `json:"access_token_lifetime,omitempty" validate:"omitnil,min=1,max=315360000"`
	RefreshTokenLifetime *int64 `json:"refresh_token_lifetime,omitempty" validate:"omitnil,min=1,max=315360000"`
}
