package sqlassets

import _ "embed"

//go:embed schema/organizations.sql
var OrganizationsSQL string

//go:embed schema/profiles.sql
var ProfilesSQL string

//go:embed schema/api_keys.sql
var APIKeysSQL string

//go:embed schema/permission_overrides.sql
var PermissionOverridesSQL string

//go:embed schema/rate_limit_violations.sql
var RateLimitViolationsSQL string

//go:embed schema/events.sql
var EventsSQL string
