package environ

import (
	"os"
	"testing"
	"time"
)

func TestEnviron(t *testing.T) {
	if os.Getenv("integer") != "" {
		t.Fatalf("wrong initialization")
	}

	if os.Getenv("unsigned") != "" {
		t.Fatalf("wrong initialization")
	}

	if os.Getenv("string") != "" {
		t.Fatalf("wrong initialization")
	}

	if GetInt("integer", -1) != -1 {
		t.Fatalf("wanted -1")
	}

	if GetUint64("unsigned", 10) != 10 {
		t.Fatalf("wanted 10")
	}

	if GetString("string", "example") != "example" {
		t.Fatalf("wanted example")
	}

	integer, unsigned, str := "-1", "10", "example"

	if err := os.Setenv("integer", integer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.Setenv("unsigned", unsigned); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.Setenv("string", str); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if GetInt("integer", -5) != -1 {
		t.Fatalf("wanted -1")
	}

	if GetUint64("unsigned", 15) != 10 {
		t.Fatalf("wanted 10")
	}

	if GetString("string", "invalid") != "example" {
		t.Fatalf("wanted example")
	}
}

func TestEnvironDuration(t *testing.T) {
	if GetDuration("duration", time.Second) != time.Second {
		t.Fatalf("wanted 1s")
	}

	if err := os.Setenv("duration", "250ms"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if GetDuration("duration", time.Second) != 250*time.Millisecond {
		t.Fatalf("wanted 250ms")
	}

	if err := os.Setenv("duration", "garbage"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if GetDuration("duration", time.Second) != time.Second {
		t.Fatalf("wanted fallback on invalid value")
	}
}

func TestEnvironBool(t *testing.T) {
	if GetBool("boolean", true) != true {
		t.Fatalf("wanted true")
	}

	if err := os.Setenv("boolean", "true"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if GetBool("boolean", false) != true {
		t.Fatalf("wanted true")
	}

	if err := os.Setenv("boolean", "no"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if GetBool("boolean", true) != false {
		t.Fatalf("wanted false")
	}
}
