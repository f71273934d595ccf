package recovery

// UserMessage returns a short explanation of err suitable for clinic staff.
// It never returns an empty string.
func UserMessage(err error) string {
	if err == nil {
		return "An unknown error occurred"
	}

	f := Classify(err)
	switch f.Kind {
	case KindNotFound:
		return "Calendar not found. Please check your calendar configuration."
	case KindPermissionDenied:
		return "Insufficient permissions. Please ensure the service account has calendar access."
	case KindRateLimited:
		return "Too many requests. Please try again in a few minutes."
	case KindQuota:
		return "Calendar API quota exceeded. Please try again later."
	case KindInvalidArgument:
		return "Invalid calendar event data. Please check the appointment details."
	case KindTransport:
		return "Network connection error. Please check your internet connection."
	case KindBackend:
		if f.Message != "" {
			return "Calendar service error: " + f.Message
		}
	default:
		if f.Message != "" && (f.Code != 0 || f.Status != "") {
			return "Calendar service error: " + f.Message
		}
		if f.Message != "" {
			return f.Message
		}
	}
	return "An unexpected error occurred with the calendar service."
}
