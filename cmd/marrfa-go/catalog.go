package main

import (
	"github.com/spf13/cobra"

	"github.com/MahdiBaghbani/marrfa-go/internal/components/catalog"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse public property listings",
	}

	city := &cobra.Command{
		Use:   "city <name>",
		Short: "List properties in a city",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := a.session.Catalog().CityProperties(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(raw)
		},
	}

	details := &cobra.Command{
		Use:   "details <property-id>",
		Short: "Print one property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePropertyID(args[0])
			if err != nil {
				return err
			}
			raw, err := a.session.Catalog().Details(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printJSON(raw)
		},
	}

	var filters map[string]string
	search := &cobra.Command{
		Use:   "search",
		Short: "Search properties with query filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := a.session.Catalog().Search(cmd.Context(), catalog.Filters(filters))
			if err != nil {
				return err
			}
			return a.printJSON(raw)
		},
	}
	search.Flags().StringToStringVar(&filters, "filter", nil, "Filter as key=value, repeatable (e.g. --filter city=Dubai)")

	var areas []int64
	byAreas := &cobra.Command{
		Use:   "areas",
		Short: "List properties in the given areas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := a.session.Catalog().ByAreas(cmd.Context(), areas)
			if err != nil {
				return err
			}
			return a.printJSON(raw)
		},
	}
	byAreas.Flags().Int64SliceVar(&areas, "id", nil, "Area id, repeatable or comma separated")

	cmd.AddCommand(city, details, search, byAreas)
	return cmd
}
