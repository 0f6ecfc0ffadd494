package shared

// AdminPolicy guards the administrative surface: principal approval, policy
// and group management, grant changes and issuing tokens for other
// principals.
const AdminPolicy = "warden.admin"
