package commsutil

import (
	"testing"
)

const connectTestPrefix = "commsutil:connect_test"

func TestConnect_InvalidURL(t *testing.T) {
	for _, url := range []string{"invalid://not-a-nats-server", "nats://127.0.0.1:1"} {
		nc, err := Connect(url, "dbi-test")
		if err == nil {
			if nc != nil {
				nc.Close()
			}
			t.Fatalf("%s - expected error for %s", connectTestPrefix, url)
		}
		if nc != nil {
			t.Errorf("%s - expected nil connection on error", connectTestPrefix)
		}
	}
}
