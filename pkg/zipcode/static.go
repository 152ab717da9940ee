package zipcode

// staticTable covers the ZIP codes used in development and tests so
// the client works without a remote provider. Keyed by the five-digit
// base; ZipCode is filled in by the caller.
var staticTable = map[string]Result{
	"10001": {City: "New York", State: "NY", Latitude: 40.7505, Longitude: -73.9934},
	"90210": {City: "Beverly Hills", State: "CA", Latitude: 34.0901, Longitude: -118.4065},
	"60601": {City: "Chicago", State: "IL", Latitude: 41.8825, Longitude: -87.6441},
	"33101": {City: "Miami", State: "FL", Latitude: 25.7743, Longitude: -80.1937},
	"78701": {City: "Austin", State: "TX", Latitude: 30.2711, Longitude: -97.7436},
	"80016": {City: "Aurora", State: "CO", Latitude: 39.6738, Longitude: -104.8315},
}
