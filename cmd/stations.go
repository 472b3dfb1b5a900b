package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"metropet.dev/trtc"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <name>",
	Short: "Resolves a station name to station IDs",
	Args:  cobra.ExactArgs(1),
	RunE:  resolve,
}

var fareCmd = &cobra.Command{
	Use:   "fare <origin> <destination>",
	Short: "Shows the single journey fare between two stations",
	Args:  cobra.ExactArgs(2),
	RunE:  fare,
}

var exitsCmd = &cobra.Command{
	Use:   "exits <station>",
	Short: "Lists the exits of a station",
	Args:  cobra.ExactArgs(1),
	RunE:  exits,
}

var facilitiesCmd = &cobra.Command{
	Use:   "facilities <station>",
	Short: "Lists the facilities of a station",
	Args:  cobra.ExactArgs(1),
	RunE:  facilities,
}

var timetableCmd = &cobra.Command{
	Use:   "timetable <station>",
	Short: "Shows first and last trains from a station",
	Args:  cobra.ExactArgs(1),
	RunE:  timetable,
}

var terminalsCmd = &cobra.Command{
	Use:   "terminals <station>",
	Short: "Lists the line ends reachable from a station",
	Args:  cobra.ExactArgs(1),
	RunE:  terminals,
}

var lostCmd = &cobra.Command{
	Use:   "lost [station]",
	Short: "Lists recently found lost property",
	Args:  cobra.MaximumNArgs(1),
	RunE:  lost,
}

var (
	lostItem string
	lostDays int
)

func init() {
	lostCmd.Flags().StringVarP(&lostItem, "item", "i", "", "Only items whose name contains this")
	lostCmd.Flags().IntVarP(&lostDays, "days", "n", trtc.DefaultLostItemDays, "How many days back to look")

	rootCmd.AddCommand(lostCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(fareCmd)
	rootCmd.AddCommand(exitsCmd)
	rootCmd.AddCommand(facilitiesCmd)
	rootCmd.AddCommand(timetableCmd)
	rootCmd.AddCommand(terminalsCmd)
}

func resolve(cmd *cobra.Command, args []string) error {
	network, err := LoadNetwork(context.Background())
	if err != nil {
		return err
	}

	switch res := network.Directory.ResolveIDs(args[0]).(type) {
	case trtc.Resolved:
		for _, id := range res.IDs {
			fmt.Printf("%s %s\n", id, network.Directory.OfficialName(id))
		}
	case trtc.Suggested:
		fmt.Printf("did you mean %q? (score %.2f)\n", res.Name, res.Score)
	case trtc.NotFound:
		return &trtc.StationNotFoundError{Name: res.Query}
	}

	return nil
}

func fare(cmd *cobra.Command, args []string) error {
	network, err := LoadNetwork(context.Background())
	if err != nil {
		return err
	}

	f, err := network.Fare(args[0], args[1])
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("no fare published between %s and %s", args[0], args[1])
	}

	fmt.Printf("adult %d NTD, child %d NTD\n", f.Adult, f.Child)
	return nil
}

func exits(cmd *cobra.Command, args []string) error {
	network, err := LoadNetwork(context.Background())
	if err != nil {
		return err
	}

	exits, err := network.Exits(args[0])
	if err != nil {
		return err
	}

	for _, e := range exits {
		fmt.Printf("%s %s\n", e.ExitID, e.Description)
	}
	return nil
}

func facilities(cmd *cobra.Command, args []string) error {
	network, err := LoadNetwork(context.Background())
	if err != nil {
		return err
	}

	facilities, err := network.Facilities(args[0])
	if err != nil {
		return err
	}

	for _, f := range facilities {
		fmt.Println(f.Description)
	}
	return nil
}

func timetable(cmd *cobra.Command, args []string) error {
	network, err := LoadNetwork(context.Background())
	if err != nil {
		return err
	}

	trains, err := network.FirstLastTrains(args[0])
	if err != nil {
		return err
	}

	for _, t := range trains {
		fmt.Printf(
			"%s to %s: first %s, last %s\n",
			t.LineID, t.DestinationStationName, t.FirstTrainTime, t.LastTrainTime,
		)
	}
	return nil
}

func terminals(cmd *cobra.Command, args []string) error {
	network, err := LoadNetwork(context.Background())
	if err != nil {
		return err
	}

	names, err := network.TerminalStations(args[0])
	if err != nil {
		return err
	}

	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func lost(cmd *cobra.Command, args []string) error {
	network, err := LoadNetwork(context.Background())
	if err != nil {
		return err
	}

	station := ""
	if len(args) > 0 {
		station = args[0]
	}

	items, err := network.LostItems(context.Background(), station, lostItem, lostDays)
	if err != nil {
		return err
	}

	for _, it := range items {
		fmt.Printf("%s %s (%s)\n", it.Date.Format("2006-01-02"), it.Name, it.Place)
	}
	return nil
}
