package session

import "github.com/mssola/useragent"

// DeviceInfo describes the embedding runtime, parsed from its user-agent
// string. Used for telemetry context only; nothing security-relevant keys
// off it.
type DeviceInfo struct {
	Platform       string `json:"platform,omitempty"`
	OS             string `json:"os,omitempty"`
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browser_version,omitempty"`
	Mobile         bool   `json:"mobile,omitempty"`
}

// ParseDeviceInfo extracts device metadata from a user-agent string.
// An empty string yields a zero DeviceInfo.
func ParseDeviceInfo(uaString string) DeviceInfo {
	if uaString == "" {
		return DeviceInfo{}
	}
	ua := useragent.New(uaString)
	name, version := ua.Browser()
	return DeviceInfo{
		Platform:       ua.Platform(),
		OS:             ua.OS(),
		Browser:        name,
		BrowserVersion: version,
		Mobile:         ua.Mobile(),
	}
}
