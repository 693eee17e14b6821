package indicator

// Info describes the session for display purposes. Fields may be empty.
type Info struct {
	Library string
	Camera  string
	Status  string
	Content string // last decoded payload
	Href    string // link form of Content, if any
}
