package test_utils

import (
	"context"

	"poll-node/modules/aggregate"

	"github.com/stretchr/testify/assert"
)

type TestingT interface {
	assert.TestingT
	Cleanup(func())
}

// RunPlugin inits and starts plugin, registering Stop as test cleanup. Start
// is awaited in a goroutine unless blockUntilStarted is true.
func RunPlugin(t TestingT, plugin aggregate.Plugin, blockUntilStarted ...bool) {
	if !assert.NoError(t, plugin.Init()) {
		return
	}
	t.Cleanup(func() {
		assert.NoError(t, plugin.Stop())
	})

	start := func() {
		_, err := plugin.Start().Await(context.Background())
		assert.NoError(t, err)
	}
	if len(blockUntilStarted) > 0 && blockUntilStarted[0] {
		start()
		return
	}
	go start()
}

// RunPlugins runs each plugin in order with RunPlugin, blocking on every start.
func RunPlugins(t TestingT, plugins ...aggregate.Plugin) {
	for _, p := range plugins {
		RunPlugin(t, p, true)
	}
}
