package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// BearerScheme is the token type reported to clients and expected in the
// HTTP Authorization header.
const BearerScheme = "Bearer"
