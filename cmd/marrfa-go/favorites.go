package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MahdiBaghbani/marrfa-go/internal/components/favorites"
)

func newFavoritesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "favorites",
		Aliases: []string{"fav"},
		Short:   "List and change saved properties",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the saved properties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.signIn(cmd.Context(), "list favorites"); err != nil {
				return err
			}
			return a.printFavorites()
		},
	}

	cmd.AddCommand(
		list,
		newFavoriteMutationCmd(a, "add", "Save a property", func(e *favorites.Engine, cmd *cobra.Command, p favorites.Property) {
			e.Add(cmd.Context(), p)
		}),
		newFavoriteMutationCmd(a, "remove", "Unsave a property", func(e *favorites.Engine, cmd *cobra.Command, p favorites.Property) {
			e.Remove(cmd.Context(), p.ID)
		}),
		newFavoriteMutationCmd(a, "toggle", "Save a property, or unsave it when already saved", func(e *favorites.Engine, cmd *cobra.Command, p favorites.Property) {
			e.Toggle(cmd.Context(), p)
		}),
	)
	return cmd
}

type favoriteMutation func(e *favorites.Engine, cmd *cobra.Command, p favorites.Property)

func newFavoriteMutationCmd(a *app, name, short string, mutate favoriteMutation) *cobra.Command {
	var (
		propName string
		price    float64
	)
	cmd := &cobra.Command{
		Use:   name + " <property-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePropertyID(args[0])
			if err != nil {
				return err
			}
			if err := a.signIn(cmd.Context(), name+" favorite"); err != nil {
				return err
			}

			engine := a.session.Favorites()
			mutate(engine, cmd, favorites.Property{ID: id, Name: propName, Price: price})
			if st := engine.State(); st.Err != "" {
				return errors.New(st.Err)
			}
			return a.printFavorites()
		},
	}
	if name != "remove" {
		cmd.Flags().StringVar(&propName, "name", "", "Property name shown in the local list")
		cmd.Flags().Float64Var(&price, "price", 0, "Property price shown in the local list")
	}
	return cmd
}

func (a *app) printFavorites() error {
	st := a.session.Favorites().State()
	if st.Err != "" {
		return errors.New(st.Err)
	}
	items := st.Favorites
	if items == nil {
		items = []favorites.Property{}
	}
	return a.printValue(items)
}

func parsePropertyID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid property id %q", s)
	}
	return id, nil
}
