package oblivion

import (
	"fmt"

	"github.com/fatih/color"
)

func printBanner(addr string) {
	title := color.New(color.FgCyan, color.Bold)
	title.Println("oblivion")
	fmt.Printf("  %s %s\n", color.YellowString("listening"), addr)
	fmt.Printf("  %s %s\n", color.YellowString("protocol"), RequestProtocolVersion)
}
