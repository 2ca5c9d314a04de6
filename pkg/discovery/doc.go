// ABOUTME: mDNS service discovery package
// ABOUTME: Advertise and locate mixbus event brokers on the local network
// Package discovery provides mDNS discovery for mixbus event brokers.
//
// A broker advertises _mixbus-events._tcp; event clients with no
// configured address resolve the first broker that answers.
//
// Example:
//
//	c := protocol.NewClient(protocol.Config{
//	    Resolve: discovery.Resolver(3 * time.Second),
//	})
package discovery
