package cli

import (
	"fmt"
	"net/http"
)

var greeting string

func PrepareGreeting() {
	metricsInfo := ""
	if Flags.MetricsPath != "" {
		metricsInfo = fmt.Sprintf("- %s - gather statistics to keep the server running smoothly\n", Flags.MetricsPath)
	}

	greeting = fmt.Sprintf(
		`Welcome to mongotusd
====================

The server is up and accepting resumable uploads. The places that matter:

- %s - send your tus uploads to this endpoint
%s
Version = %s
GitCommit = %s
BuildDate = %s
`, Flags.Basepath, metricsInfo, VersionName, GitCommit, BuildDate)
}

func DisplayGreeting(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(greeting))
}
