package identity

import (
	"testing"

	"upsock/pkg/config"
)

func TestLocalAndTopic(t *testing.T) {
	c := config.Default().Identity
	if got := Local(c).String(); got != "//test.app/18002/1/0" {
		t.Fatalf("local = %s", got)
	}
	if got := Topic(c, 0x8003).String(); got != "//test.app/18002/1/8003" {
		t.Fatalf("topic = %s", got)
	}
}
