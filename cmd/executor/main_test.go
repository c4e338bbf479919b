package main

import (
	"os"
	"testing"
)

func TestIsLambdaEnvironment(t *testing.T) {
	os.Unsetenv("AWS_LAMBDA_RUNTIME_API")
	os.Unsetenv("_LAMBDA_SERVER_PORT")

	if isLambdaEnvironment() {
		t.Error("expected false when no Lambda env vars are set")
	}

	t.Setenv("AWS_LAMBDA_RUNTIME_API", "localhost:9001")
	if !isLambdaEnvironment() {
		t.Error("expected true when AWS_LAMBDA_RUNTIME_API is set")
	}
}
