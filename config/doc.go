// Package config loads process settings for bakeryd.
//
// Values are layered: built-in defaults, then the YAML file, then
// environment variables prefixed with BAKERY_ (a .env file in the working
// directory is loaded first). Nested keys use underscores, so jwt.access_ttl
// is BAKERY_JWT_ACCESS_TTL. Unknown keys in the YAML file are rejected.
package config
