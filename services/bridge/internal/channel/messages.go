package channel

import (
	"fmt"
	"time"
)

const HelpText = "Hi! To start an order send your table code, for example:\n" +
	"table: A12\n" +
	"You can also add branch: <id> or restaurant: <id>.\n" +
	"Envía \"mesa: A12\" para empezar."

const PromptForCodeText = "Which table are you at? Reply with the code printed on your table, for example \"table: A12\"."

func LinkText(shortURL string, ttl time.Duration) string {
	return fmt.Sprintf("Here is your ordering link: %s\nIt expires in %d minutes.", shortURL, int(ttl.Minutes()))
}
