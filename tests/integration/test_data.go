package integration

import (
	"fmt"
	"time"
)

// TestCredentials generates unique credentials using a timestamp so parallel
// runs never collide on the email unique constraint
func TestCredentials(suffix string) (email, password string) {
	ts := time.Now().UnixNano()
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "CorrectHorse9!"
	return
}
