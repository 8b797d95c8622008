package context

// SentinelTopic is reported for a message that matches no keyword.
const SentinelTopic = "various topics"

// recentUserMessages is how many of the latest user messages feed topic detection.
const recentUserMessages = 3

type topicRule struct {
	keywords []string
	phrase   string
}

// topicTable is checked in order; the first rule with a keyword contained in
// the lower-cased message wins.
var topicTable = []topicRule{
	{[]string{"weather"}, "the weather forecast"},
	{[]string{"calendar"}, "your calendar"},
	{[]string{"email"}, "email communications"},
	{[]string{"send"}, "sending information"},
	{[]string{"renewable"}, "renewable energy"},
	{[]string{"energy"}, "energy topics"},
	{[]string{"time"}, "time management"},
	{[]string{"management"}, "management strategies"},
	{[]string{"meeting"}, "scheduling meetings"},
	{[]string{"book"}, "booking appointments"},
	{[]string{"password"}, "password reset"},
	{[]string{"reset"}, "account resets"},
	{[]string{"account"}, "account management"},
	{[]string{"login"}, "login issues"},
	{[]string{"billing"}, "billing questions"},
	{[]string{"payment"}, "payment methods"},
	{[]string{"subscription"}, "subscription details"},
	{[]string{"cancel"}, "cancellation procedures"},
	{[]string{"update"}, "account updates"},
	{[]string{"problem"}, "technical issues"},
	{[]string{"help"}, "customer support"},
	{[]string{"question"}, "general inquiries"},
}

// greetingTopicTable is the shorter table used when a greeting recalls a
// previous session. Messages it does not recognise fall through to topicTable.
var greetingTopicTable = []topicRule{
	{[]string{"weather"}, "the weather forecast"},
	{[]string{"calendar"}, "your calendar"},
	{[]string{"email", "send"}, "sending information to your email"},
	{[]string{"renewable energy"}, "renewable energy developments"},
	{[]string{"time management"}, "time management techniques"},
	{[]string{"meeting", "book"}, "booking a meeting"},
}

const (
	recalledGreetingFormat = "%s I remember our previous conversation about %s. Would you like to continue that conversation?"
)
