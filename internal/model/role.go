package model

// Staff roles that may receive order notifications.
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super-admin"
	RoleRider      = "rider"
)

// Room names used by the hub.
const (
	RoomAdmins      = "admins"
	RoomSuperAdmins = "super-admins"
	riderRoomPrefix = "rider:"
)

// RiderRoom returns the room a single rider joins.
func RiderRoom(riderID string) string {
	return riderRoomPrefix + riderID
}

// RoomsForRole returns the rooms a user with the given role joins.
// Roles outside the staff set get no rooms.
func RoomsForRole(role, userID string) []string {
	switch role {
	case RoleAdmin:
		return []string{RoomAdmins}
	case RoleSuperAdmin:
		return []string{RoomAdmins, RoomSuperAdmins}
	case RoleRider:
		if userID == "" {
			return nil
		}
		return []string{RiderRoom(userID)}
	default:
		return nil
	}
}

// IsStaff reports whether role may connect to the notification hub.
func IsStaff(role string) bool {
	switch role {
	case RoleAdmin, RoleSuperAdmin, RoleRider:
		return true
	}
	return false
}
