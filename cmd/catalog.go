package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/example/laundry-storefront/internal/backend"
	"github.com/example/laundry-storefront/internal/laundry"
	"github.com/example/laundry-storefront/internal/session"
	"github.com/spf13/cobra"
)

type sessionFlags struct {
	token  string
	userID string
}

func (f *sessionFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&f.token, "token", "", "backend access token to forward")
	c.Flags().StringVar(&f.userID, "user-id", "", "backend user id to forward")
}

func (f *sessionFlags) session(names session.Names) session.Session {
	return session.New(names, f.token, f.userID)
}

func newCatalogCmd() *cobra.Command {
	var (
		storeID, machineID, device string
		sf                         sessionFlags
	)
	c := &cobra.Command{
		Use:   "catalog",
		Short: "Fetch and print the options of one machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig()
			if err != nil {
				return err
			}
			dt := laundry.DeviceType(device)
			if dt != laundry.DeviceWasher && dt != laundry.DeviceDryer {
				return fmt.Errorf("invalid --device %q (want washer or dryer)", device)
			}
			client := backend.New(cfg.BackendURL, cfg.BackendTimeout)
			names := session.Names{Token: cfg.SessionTokenCookie, User: cfg.SessionUserCookie}
			cat, err := client.FetchCatalog(context.Background(), sf.session(names), storeID, machineID, dt)
			if err != nil {
				return err
			}
			printCatalog(cmd.OutOrStdout(), cat)
			return nil
		},
	}
	c.Flags().StringVar(&storeID, "store", "", "store id")
	c.Flags().StringVar(&machineID, "machine", "", "machine id")
	c.Flags().StringVar(&device, "device", string(laundry.DeviceWasher), "washer or dryer")
	sf.register(c)
	_ = c.MarkFlagRequired("store")
	_ = c.MarkFlagRequired("machine")
	return c
}

func printCatalog(w io.Writer, cat laundry.Catalog) {
	groups := []struct {
		title string
		opts  []laundry.MachineOption
	}{
		{"courses", cat.Courses},
		{"add-ons", cat.AddOns},
		{"dryer times", cat.DryerTimes},
	}
	for _, g := range groups {
		if len(g.opts) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s:\n", g.title)
		for _, o := range g.opts {
			fmt.Fprintf(w, "  id=%s name=%q price=%d minutes=%d\n", o.ID, o.Name, o.Price, o.Minutes)
		}
	}
}

func newEstimateCmd() *cobra.Command {
	var (
		storeID, washerID, dryerID, mode string
		courseID, dryerTimeID            string
		addOns                           []string
		sf                               sessionFlags
	)
	c := &cobra.Command{
		Use:   "estimate",
		Short: "Fetch machine catalogs and print the price/time estimate for a selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := laundry.ParseMode(mode)
			if err != nil {
				return err
			}
			if err := laundry.ValidatePrerequisites(m, washerID, dryerID); err != nil {
				return err
			}
			cfg, err := loadClientConfig()
			if err != nil {
				return err
			}
			client := backend.New(cfg.BackendURL, cfg.BackendTimeout)
			sess := sf.session(session.Names{Token: cfg.SessionTokenCookie, User: cfg.SessionUserCookie})

			cat, err := laundry.LoadCatalog(context.Background(), m, washerID, dryerID, func(ctx context.Context, machineID string, device laundry.DeviceType) (laundry.Catalog, error) {
				return client.FetchCatalog(ctx, sess, storeID, machineID, device)
			})
			if err != nil {
				return err
			}

			sel, est, err := estimateSelection(cat, m, courseID, addOns, dryerTimeID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "options=%s price=%d minutes=%d\n",
				strings.Join(sel.OptionIDs(m), ","), est.TotalPrice, est.TotalMinutes)
			return nil
		},
	}
	c.Flags().StringVar(&storeID, "store", "", "store id")
	c.Flags().StringVar(&washerID, "washer", "", "washer machine id")
	c.Flags().StringVar(&dryerID, "dryer", "", "dryer machine id")
	c.Flags().StringVar(&mode, "mode", string(laundry.ModeWash), "wash, dry or wash_dry")
	c.Flags().StringVar(&courseID, "course", "", "course option id")
	c.Flags().StringSliceVar(&addOns, "addon", nil, "add-on option id (repeatable)")
	c.Flags().StringVar(&dryerTimeID, "dryer-time", "", "dryer time option id")
	sf.register(c)
	_ = c.MarkFlagRequired("store")
	return c
}

// estimateSelection builds a selection from option ids, rejecting ids the
// catalog does not offer, and prices it.
func estimateSelection(cat laundry.Catalog, mode laundry.Mode, courseID string, addOns []string, dryerTimeID string) (laundry.Selection, laundry.Estimate, error) {
	var sel laundry.Selection
	if courseID != "" {
		if _, ok := cat.Course(courseID); !ok {
			return sel, laundry.Estimate{}, fmt.Errorf("unknown course %q", courseID)
		}
		sel.SetCourse(courseID)
	}
	for _, id := range addOns {
		if _, ok := cat.AddOn(id); !ok {
			return sel, laundry.Estimate{}, fmt.Errorf("unknown add-on %q", id)
		}
		if !sel.HasAddOn(id) {
			sel.ToggleAddOn(id)
		}
	}
	if dryerTimeID != "" {
		if _, ok := cat.DryerTime(dryerTimeID); !ok {
			return sel, laundry.Estimate{}, fmt.Errorf("unknown dryer time %q", dryerTimeID)
		}
		sel.SetDryerTime(dryerTimeID)
	}
	return sel, laundry.Calculate(cat, sel, mode), nil
}
