package dto

// DashboardStats is the aggregate snapshot served to the dashboard page.
// RoomUtilization is a rounded percentage; it is 0 when no rooms exist.
type DashboardStats struct {
	TotalClasses    int `json:"total_classes"`
	ActiveTeachers  int `json:"active_teachers"`
	TotalStudents   int `json:"total_students"`
	RoomUtilization int `json:"room_utilization"`
}
