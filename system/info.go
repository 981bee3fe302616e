// Package system describes the host a report is created on.
package system

import (
	"os"
	"runtime"

	"github.com/targodan/go-errors"
)

// Info identifies the analysis host.
type Info struct {
	OSName    string `json:"osName"`
	OSVersion string `json:"osVersion"`
	OSArch    string `json:"osArch"`
	Hostname  string `json:"hostname"`
	NumCPUs   int    `json:"numCPUs"`
}

func GetInfo() (*Info, error) {
	info := &Info{
		OSArch:  runtime.GOARCH,
		NumCPUs: runtime.NumCPU(),
	}

	var err error
	info.OSName, info.OSVersion, err = getOSInfo()
	if err != nil {
		return nil, errors.Newf("could not determine OS info, reason: %w", err)
	}
	info.Hostname, err = os.Hostname()
	if err != nil {
		return nil, errors.Newf("could not determine hostname, reason: %w", err)
	}
	return info, nil
}
