package testutil

import (
	"fmt"
	"sync/atomic"
	"time"
)

var seq atomic.Int64

// TestUser generates unique test user credentials
func TestUser(suffix string) (email, password string) {
	email = fmt.Sprintf("test-%d-%d-%s@example.com", time.Now().Unix(), seq.Add(1), suffix)
	password = "TestPassword123!"
	return
}

// UniqueVAT returns a VAT number not used by any other call in this process
func UniqueVAT() string {
	return fmt.Sprintf("VAT%d%04d", time.Now().UnixNano()%1_000_000_000, seq.Add(1))
}
