package config

// HostConfig holds settings applied to requests for a single host.
type HostConfig struct {
	// Headers are custom HTTP headers added to every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Cookie is a raw cookie string.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Username and Password enable HTTP basic authentication.
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// BearerToken enables bearer authentication.
	BearerToken string `yaml:"bearerToken,omitempty"`

	// Encoding is the character encoding of the host's pages.
	Encoding string `yaml:"encoding,omitempty"`
}

// File represents the structure of the .flexible configuration file.
type File struct {
	// Hosts maps hostnames to their host-specific settings.
	// Keys are bare hostnames (e.g., "example.com").
	Hosts map[string]HostConfig `yaml:"hosts,omitempty"`

	// Defaults apply to every host unless overridden in Hosts.
	Defaults HostConfig `yaml:"defaults,omitempty"`
}

// GetHostConfig returns the configuration for a host, merging the
// host-specific entry over the defaults.
func (cf *File) GetHostConfig(host string) HostConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	hc, ok := cf.Hosts[host]
	if !ok {
		return result
	}

	if hc.Cookie != "" {
		result.Cookie = hc.Cookie
	}
	if hc.Username != "" || hc.Password != "" {
		result.Username = hc.Username
		result.Password = hc.Password
	}
	if hc.BearerToken != "" {
		result.BearerToken = hc.BearerToken
	}
	if hc.Encoding != "" {
		result.Encoding = hc.Encoding
	}
	if len(hc.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range hc.Headers {
			result.Headers[k] = v
		}
	}
	return result
}
