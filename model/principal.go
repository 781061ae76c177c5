package model

// Principal identifies the authenticated caller of a core operation.
// It is passed explicitly instead of living in ambient/global state.
type Principal struct {
	UserID int64
	Admin  bool
}

// CanAccess reports whether the principal may operate on a resource
// owned by ownerID.
func (p Principal) CanAccess(ownerID int64) bool {
	return p.Admin || p.UserID == ownerID
}
