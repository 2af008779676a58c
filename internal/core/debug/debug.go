// Debug utilities that can be enabled through the debugging config section.
package debug

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/sethcallen/harbinger/internal/wire"
)

// StartPprofServer starts the default pprof HTTP server that can be accessed
// via localhost to get runtime information about the server.
// See https://golang.org/pkg/net/http/pprof/
func StartPprofServer(logger *logrus.Logger, port int) {
	listenerAddr := fmt.Sprintf("localhost:%d", port)
	logger.Infof("starting pprof server on %s", listenerAddr)

	go func() {
		if err := http.ListenAndServe(listenerAddr, nil); err != nil {
			logger.Infof("error starting pprof server: %s", err)
		}
	}()
}

var dumpConfig = spew.ConfigState{Indent: "  ", DisableCapacities: true, DisablePointerAddresses: true}

// TraceMessage logs a decoded message at debug level. Used by the client
// send path and the handlers when packet logging is enabled.
func TraceMessage(logger *logrus.Logger, direction, peer string, msg wire.Message) {
	logger.Debugf("%s %s tag=%d\n%s", direction, peer, msg.Tag(), dumpConfig.Sdump(msg))
}
