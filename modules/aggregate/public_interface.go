package aggregate

import "github.com/chebyrash/promise"

// Plugin is a node component driven by Aggregate.
type Plugin interface {
	// Init loads config and opens stores. Plugins are initialised in the order
	// they are passed to Aggregate, so later plugins may rely on earlier ones.
	Init() error
	// Start must resolve once the plugin is serving; long running work belongs
	// in goroutines.
	Start() *promise.Promise[any]
	// Stop releases resources. Called in reverse order.
	Stop() error
}
