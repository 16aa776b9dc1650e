package main

import (
	"github.com/spf13/cobra"

	"github.com/MahdiBaghbani/marrfa-go/internal/components/leads"
)

func newLeadsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Submit leads and manage the user profile",
	}

	var interest leads.InterestRequest
	interestCmd := &cobra.Command{
		Use:   "interest <property-id>",
		Short: "Register interest in a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePropertyID(args[0])
			if err != nil {
				return err
			}
			email, err := a.identity("register interest")
			if err != nil {
				return err
			}
			interest.PropertyID = id
			if interest.Email == "" {
				interest.Email = email
			}
			raw, err := a.session.Leads().RegisterInterest(cmd.Context(), email, interest)
			if err != nil {
				return err
			}
			return a.printJSON(raw)
		},
	}
	interestCmd.Flags().StringVar(&interest.Name, "name", "", "Contact name")
	interestCmd.Flags().StringVar(&interest.Phone, "phone", "", "Contact phone")
	interestCmd.Flags().StringVar(&interest.BuyerType, "buyer-type", "", "Buyer type")
	interestCmd.Flags().StringVar(&interest.Country, "country", "", "Buyer country")
	interestCmd.Flags().StringVar(&interest.Purpose, "purpose", "", "Purchase purpose")

	var call leads.CallRequest
	callCmd := &cobra.Command{
		Use:   "call <property-id>",
		Short: "Schedule a call about a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePropertyID(args[0])
			if err != nil {
				return err
			}
			email, err := a.identity("schedule call")
			if err != nil {
				return err
			}
			call.PropertyID = id
			if call.Email == "" {
				call.Email = email
			}
			raw, err := a.session.Leads().ScheduleCall(cmd.Context(), email, call)
			if err != nil {
				return err
			}
			return a.printJSON(raw)
		},
	}
	callCmd.Flags().StringVar(&call.Name, "name", "", "Contact name")
	callCmd.Flags().StringVar(&call.Phone, "phone", "", "Contact phone")
	callCmd.Flags().StringVar(&call.Date, "date", "", "Preferred date")
	callCmd.Flags().StringVar(&call.Time, "time", "", "Preferred time")
	callCmd.Flags().StringVar(&call.Message, "message", "", "Message for the agent")

	var phone leads.PhoneDetails
	phoneCmd := &cobra.Command{
		Use:   "phone",
		Short: "Print the stored phone number, or replace it with --set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := a.identity("user phone")
			if err != nil {
				return err
			}
			var raw []byte
			if cmd.Flags().Changed("set") {
				raw, err = a.session.Leads().UpdateUserPhone(cmd.Context(), email, phone)
			} else {
				raw, err = a.session.Leads().UserPhone(cmd.Context(), email)
			}
			if err != nil {
				return err
			}
			return a.printJSON(raw)
		},
	}
	phoneCmd.Flags().StringVar(&phone.Phone, "set", "", "New phone number")
	phoneCmd.Flags().StringVar(&phone.Code, "code", "", "Dialing code used with --set")
	phoneCmd.Flags().StringVar(&phone.Country, "country", "", "Country used with --set")

	var profile leads.UserProfile
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Create or update the user record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := a.identity("post user")
			if err != nil {
				return err
			}
			raw, err := a.session.Leads().PostUser(cmd.Context(), email, profile)
			if err != nil {
				return err
			}
			return a.printJSON(raw)
		},
	}
	registerCmd.Flags().StringVar(&profile.Name, "name", "", "Display name")
	registerCmd.Flags().StringVar(&profile.Photo, "photo", "", "Photo URL")

	recommendedCmd := &cobra.Command{
		Use:   "recommended",
		Short: "Print properties recommended for the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := a.identity("recommended")
			if err != nil {
				return err
			}
			raw, err := a.session.Leads().Recommended(cmd.Context(), email)
			if err != nil {
				return err
			}
			return a.printJSON(raw)
		},
	}

	cmd.AddCommand(interestCmd, callCmd, phoneCmd, registerCmd, recommendedCmd)
	return cmd
}
