package views

import (
	"context"
	"fmt"

	"cluster-portal/pkg/models"
	"cluster-portal/pkg/router"
	"cluster-portal/pkg/view"
)

type alertsView struct {
	*listingView[models.Alert]
}

func newAlerts(d router.Deps, m router.Manifest) (router.View, error) {
	if err := requireServices(d, m); err != nil {
		return nil, err
	}
	lv := newListingView[models.Alert](d, m, view.Options{
		Name:       "alerts",
		MessageKey: "alerts.load",
		Filters:    map[string]string{"status": "open"},
	}, d.Services.Alerts.List)
	return &alertsView{listingView: lv}, nil
}

func (v *alertsView) Actions() []string {
	return []string{"ack <id>           acknowledge an alert"}
}

func (v *alertsView) Act(name string, args []string) error {
	if name != "ack" {
		return fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	if len(args) != 1 {
		return usage("ack <id>")
	}
	id := args[0]
	v.mutate("alerts.ack", func(ctx context.Context, c *models.ClusterSelection) error {
		_, err := v.deps.Services.Alerts.Acknowledge(ctx, c, id)
		return err
	})
	return nil
}

type logsView struct {
	*listingView[models.LogEntry]
}

func newLogs(d router.Deps, m router.Manifest) (router.View, error) {
	if err := requireServices(d, m); err != nil {
		return nil, err
	}
	lv := newListingView[models.LogEntry](d, m, view.Options{
		Name:       "logs",
		MessageKey: "logs.load",
	}, d.Services.Logs.List)
	return &logsView{listingView: lv}, nil
}

type networksView struct {
	*listingView[models.Network]
}

func newNetworks(d router.Deps, m router.Manifest) (router.View, error) {
	if err := requireServices(d, m); err != nil {
		return nil, err
	}
	lv := newListingView[models.Network](d, m, view.Options{
		Name:       "networks",
		MessageKey: "networks.load",
	}, d.Services.Networks.List)
	return &networksView{listingView: lv}, nil
}

func (v *networksView) Actions() []string {
	return []string{
		"create <name> <subnet> [gateway] [driver]",
		"delete <id>",
	}
}

func (v *networksView) Act(name string, args []string) error {
	svc := v.deps.Services.Networks
	switch name {
	case "create":
		if len(args) < 2 || len(args) > 4 {
			return usage("create <name> <subnet> [gateway] [driver]")
		}
		n := models.Network{Name: args[0], Subnet: args[1]}
		if len(args) > 2 {
			n.Gateway = args[2]
		}
		if len(args) > 3 {
			n.Driver = args[3]
		}
		v.mutate("networks.create", func(ctx context.Context, c *models.ClusterSelection) error {
			_, err := svc.Create(ctx, c, n)
			return err
		})
		return nil
	case "delete":
		if len(args) != 1 {
			return usage("delete <id>")
		}
		id := args[0]
		v.mutate("networks.delete", func(ctx context.Context, c *models.ClusterSelection) error {
			return svc.Delete(ctx, c, id)
		})
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
}

type componentsView struct {
	*listingView[models.Component]
}

func newComponents(d router.Deps, m router.Manifest) (router.View, error) {
	if err := requireServices(d, m); err != nil {
		return nil, err
	}
	lv := newListingView[models.Component](d, m, view.Options{
		Name:       "components",
		MessageKey: "components.load",
	}, d.Services.Components.List)
	return &componentsView{listingView: lv}, nil
}
