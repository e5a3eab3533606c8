package pages

// CanMutate reports whether a request may edit or delete the page: the caller
// either presents the page's edit token or is the identity stamped as owner at creation.
func CanMutate(page *Page, token EditToken, owner OwnerID) bool {
	if page == nil {
		return false
	}
	if page.EditToken.Equal(token) {
		return true
	}
	return !owner.IsZero() && page.OwnerID == owner
}
