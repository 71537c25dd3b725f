package dispatch

// Các mức severity của notification
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
)

// SeverityPriority mapping (0 = cao nhất, khớp priority của event metadata)
var SeverityPriority = map[string]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
}

// SeverityMaxRetries số lần retry tối đa theo severity
var SeverityMaxRetries = map[string]int{
	SeverityCritical: 10, // Critical: retry nhiều hơn
	SeverityHigh:     5,
	SeverityMedium:   3,
	SeverityLow:      2,
	SeverityInfo:     1,
}

// GetPriorityFromSeverity tính priority từ severity, default = 2 (medium)
func GetPriorityFromSeverity(severity string) int {
	if p, ok := SeverityPriority[severity]; ok {
		return p
	}
	return 2
}

// GetMaxRetriesFromSeverity tính maxRetries từ severity, default = 3
func GetMaxRetriesFromSeverity(severity string) int {
	if r, ok := SeverityMaxRetries[severity]; ok {
		return r
	}
	return 3
}

// GetRecommendedChannels danh sách channel khuyến nghị theo severity,
// dùng khi derive notification từ shaped event mà không cấu hình channel
func GetRecommendedChannels(severity string) []string {
	switch severity {
	case SeverityCritical:
		return []string{"email", "telegram", "webhook"}
	case SeverityHigh, SeverityMedium:
		return []string{"email", "telegram"}
	default:
		return []string{"email"}
	}
}
