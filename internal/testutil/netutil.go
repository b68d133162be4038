package testutil

import (
	"net"
	"testing"
)

// FreePort резервирует свободный TCP порт на 127.0.0.1 и сразу его освобождает.
// Между закрытием и повторным bind порт может занять кто-то другой; для тестов этого достаточно.
func FreePort(t testing.TB) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create TCP listener: %v", err)
	}
	defer func() { _ = listener.Close() }()

	return listener.Addr().(*net.TCPAddr).Port
}
