package serpapi

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Response is the subset of a SerpApi search response the adapters read.
type Response struct {
	Error            string            `json:"error"`
	OrganicResults   []OrganicResult   `json:"organic_results"`
	NewsResults      []NewsResult      `json:"news_results"`
	EventsResults    []EventResult     `json:"events_results"`
	LocalResults     []LocalResult     `json:"local_results"`
	RelatedQuestions []RelatedQuestion `json:"related_questions"`
	AnswerBox        *AnswerBox        `json:"answer_box"`
}

type OrganicResult struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Snippet   string `json:"snippet"`
	Date      string `json:"date"`
	Thumbnail string `json:"thumbnail"`
}

type NewsResult struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Snippet   string `json:"snippet"`
	Date      string `json:"date"`
	Thumbnail string `json:"thumbnail"`
}

type EventResult struct {
	Title string `json:"title"`
	Date  struct {
		StartDate string `json:"start_date"`
		When      string `json:"when"`
	} `json:"date"`
	Address     []string `json:"address"`
	Description string   `json:"description"`
	Link        string   `json:"link"`
	Thumbnail   string   `json:"thumbnail"`
}

type LocalResult struct {
	Title          string   `json:"title"`
	Address        string   `json:"address"`
	Rating         *float64 `json:"rating"`
	PlaceID        string   `json:"place_id"`
	Link           string   `json:"link"`
	GPSCoordinates *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"gps_coordinates"`
}

type RelatedQuestion struct {
	Question string `json:"question"`
	Snippet  string `json:"snippet"`
	Link     string `json:"link"`
}

// AnswerBox carries the weather card for "<location> weather" queries.
type AnswerBox struct {
	Type          string `json:"type"`
	Temperature   text   `json:"temperature"`
	Unit          text   `json:"unit"`
	Weather       text   `json:"weather"`
	Precipitation text   `json:"precipitation"`
	Humidity      text   `json:"humidity"`
	Wind          text   `json:"wind"`
}

// text accepts either a JSON string or a number.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*t = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*t = text(v)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*t = text(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}
