package users

// IsAtLeast checks if this type meets the minimum required level
func IsAtLeast(t, min UserType) bool {
	typeHierarchy := map[UserType]int{
		TypeNormal: 0,
		TypeAdmin:  1,
	}

	currentLevel, exists := typeHierarchy[t]
	if !exists {
		return false
	}

	minLevel, exists := typeHierarchy[min]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllTypes returns all predefined user types in hierarchical order
func GetAllTypes() []UserType {
	return []UserType{
		TypeNormal,
		TypeAdmin,
	}
}

// ParseUserType safely parses a string into a UserType
func ParseUserType(s string) (UserType, bool) {
	t := UserType(s)
	return t, IsValidUserType(t)
}

// AuthorizeOwnerOrAdmin allows a user to act on their own record and admins
// to act on any record.
func AuthorizeOwnerOrAdmin(claims AuthClaims, targetID string) error {
	if claims == nil {
		return ErrNotAllowed
	}

	if claims.IsElevated() {
		return nil
	}

	if claims.UserID() == targetID {
		return nil
	}

	return ErrNotAllowed
}
