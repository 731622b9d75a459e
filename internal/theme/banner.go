package theme

import (
	"fmt"
)

// Banner returns the CLI banner.
func Banner() string {
	const cyan = "\033[36m"
	const magenta = "\033[35m"
	const reset = "\033[0m"

	return "" +
		magenta + "  ♡ NiceGuy ♡" + reset + "\n" +
		cyan + "  finds happy news on X and says congrats\n" + reset
}

// PrintBanner prints the banner to stdout.
func PrintBanner() {
	fmt.Print(Banner())
}
