package notifications

// NewDesktopForTest returns a desktop notifier that records instead of
// raising system notifications.
func NewDesktopForTest(notify func(title, message string) error) Service {
	return &desktopService{notify: notify}
}

// Combine exposes fan-out for tests.
func Combine(services ...Service) Service {
	return multiService(services)
}
