package nats

import (
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/qarelay"
)

func AddEndpoints(group micro.Group, endpoints qarelay.EndpointSet) {
	group.AddEndpoint("ask", AskHandler(endpoints.Ask))
	group.AddEndpoint("reload", ReloadHandler(endpoints.Reload))
	group.AddEndpoint("count", CountHandler(endpoints.Count))
}
