// Package discovery advertises the helper services proxied by lmsgate and
// serves the ones it advertises.
package discovery

// Version is the discovery document format version.
const Version = "1.0.0"

// ServiceIPAPI is the name of the IP geolocation proxy.
const ServiceIPAPI = "ipapi"

// Service describes one proxied service.
type Service struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
}

// Document is the capability-discovery response body.
type Document struct {
	Status   string    `json:"status"`
	Services []Service `json:"services"`
	Version  string    `json:"version"`
}

// Describe returns the discovery document. It takes no input and every call
// returns an independent copy.
func Describe() Document {
	return Document{
		Status: "ok",
		Services: []Service{
			{
				Name:        ServiceIPAPI,
				Description: "IP geolocation lookup proxied to ipapi.co",
				Usage:       "/api/proxy/ipapi?ip=<address>",
			},
		},
		Version: Version,
	}
}
