package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stpbots/questioner/internal/config"
	"github.com/stpbots/questioner/internal/store"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ Questioner Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show broker status and store counters",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 Questioner Status")
		fmt.Printf("Version: %s\n", version)

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config:  ✗ %v\n", err)
			return
		}
		fmt.Printf("Config:  ✓ Loaded (division %s)\n", cfg.Bot.Division)

		if _, err := os.Stat(cfg.Database.QuestionerPath); err != nil {
			fmt.Println("Store:   ✗ Not found (" + cfg.Database.QuestionerPath + ")")
			return
		}
		st, err := store.Open(cfg.Database.QuestionerPath)
		if err != nil {
			fmt.Printf("Store:   ✗ %v\n", err)
			return
		}
		defer st.Close()

		counts, err := st.StatusCounts()
		if err != nil {
			fmt.Printf("Store:   ✗ %v\n", err)
			return
		}
		fmt.Println("Store:   ✓ " + cfg.Database.QuestionerPath)
		fmt.Printf("Open:         %d\n", counts[store.StatusOpen])
		fmt.Printf("In progress:  %d\n", counts[store.StatusInProgress])
		fmt.Printf("Closed:       %d\n", counts[store.StatusClosed])
		if pairs, err := st.CountPairs(); err == nil {
			fmt.Printf("Pairs:        %d\n", pairs)
		}
		now := time.Now()
		group := cfg.Forums.MainForumID(cfg.Bot.Division)
		if month, err := st.ListQuestionsByMonth(now.Month(), now.Year(), group); err == nil {
			fmt.Printf("This month:   %d\n", len(month))
		}

		if cfg.Journal.Enabled {
			fmt.Println("Journal: ✓ Enabled (" + cfg.Journal.Topic + ")")
		} else {
			fmt.Println("Journal: ✗ Disabled")
		}
		if cfg.Bot.UseRedis {
			fmt.Println("Redis:   ✓ Enabled (" + cfg.Redis.Addr() + ")")
		} else {
			fmt.Println("Redis:   ✗ Disabled")
		}
		fmt.Println("Status:  Ready")
	},
}
