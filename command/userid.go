package command

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/snowflake"
)

// ValidateUserID checks the shape of a platform user id: a snowflake on
// Discord, a positive integer on Twitch.
func ValidateUserID(source Source, id string) error {
	switch source {
	case Discord:
		sf, err := snowflake.ParseString(id)
		if err != nil || sf.Int64() <= 0 {
			return fmt.Errorf("%q is not a discord user id", id)
		}
	case Twitch:
		n, err := strconv.ParseUint(id, 10, 64)
		if err != nil || n == 0 {
			return fmt.Errorf("%q is not a twitch user id", id)
		}
	default:
		return fmt.Errorf("unknown source %q", source)
	}
	return nil
}
