package tile

import (
	"fmt"
	"strconv"
	"strings"
)

// Server describes one tile source: a name used in cache paths and a URL
// template with {z}, {x}, {y} placeholders.
type Server struct {
	Name        string
	URLTemplate string
	Headers     map[string]string
}

// URL expands the template for one tile address.
func (s Server) URL(a Address) string {
	u := s.URLTemplate
	u = strings.ReplaceAll(u, "{z}", strconv.Itoa(a.Z))
	u = strings.ReplaceAll(u, "{x}", strconv.Itoa(a.X))
	u = strings.ReplaceAll(u, "{y}", strconv.Itoa(a.Y))
	return u
}

// Servers is a registry of tile sources keyed by name.
type Servers map[string]Server

// Get looks up a server by name.
func (s Servers) Get(name string) (Server, error) {
	srv, ok := s[name]
	if !ok {
		return Server{}, fmt.Errorf("unknown tile server: %s", name)
	}
	return srv, nil
}

// Names returns the registered server names.
func (s Servers) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	return names
}

// DefaultServers returns the built-in tile sources. Note the satellite
// template addresses tiles as {z}/{y}/{x}.
func DefaultServers(userAgent, referer string) Servers {
	headers := map[string]string{
		"User-Agent": userAgent,
		"Referer":    referer,
	}
	return Servers{
		"openstreetmap": {
			Name:        "openstreetmap",
			URLTemplate: "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
			Headers:     headers,
		},
		"satellite": {
			Name:        "satellite",
			URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
			Headers:     headers,
		},
	}
}
