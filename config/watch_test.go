package config

import (
	"os"
	"testing"
)

func TestWatchReturnsImmediatelyWithoutEnvConfigFile(t *testing.T) {
	os.Unsetenv(EnvConfigFile)

	stop := make(chan struct{})
	close(stop)

	called := false
	if err := Watch(stop, func(Config) { called = true }); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Fatal("onReload must never fire when there is no config file to watch")
	}
}
