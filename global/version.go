package global

import "fmt"

const Version = "0.2.1"

func BannerString() string {
	return fmt.Sprintf("starting tradelayerd version %s", Version)
}
