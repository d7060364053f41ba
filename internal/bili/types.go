package bili

import "encoding/json"

// envelope is the outer JSON shape shared by every endpoint.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Account is the authenticated user summary from the nav endpoint.
type Account struct {
	Mid       int64  `json:"mid"`
	Name      string `json:"uname"`
	VIPStatus int    `json:"vipStatus"`
}

// Privileged reports whether the account holds an active membership, which
// unlocks quality tiers above 1080P.
func (a Account) Privileged() bool {
	return a.VIPStatus == 1
}

// CollectionSummary is one favorites folder as listed by the folder
// endpoint. MediaCount is the service's declared item total, used after a
// sync to classify completeness.
type CollectionSummary struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	MediaCount int    `json:"media_count"`
}

type collectionList struct {
	Count int                 `json:"count"`
	List  []CollectionSummary `json:"list"`
}

// MediaEntry is one item of a favorites folder page.
type MediaEntry struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	BVID  string `json:"bvid"`
	Upper struct {
		Name string `json:"name"`
	} `json:"upper"`
}

// ResourcePage is one page of a collection's contents.
type ResourcePage struct {
	Medias  []MediaEntry `json:"medias"`
	HasMore bool         `json:"has_more"`
}

// VideoPage is one sub-part of a multi-part video.
type VideoPage struct {
	CID      int64  `json:"cid"`
	Page     int    `json:"page"`
	Part     string `json:"part"`
	Duration int    `json:"duration"`
}

// VideoDetail is the item metadata from the view endpoint. Single-part
// videos carry their stream identifier in CID with an empty or one-element
// Pages list.
type VideoDetail struct {
	BVID     string      `json:"bvid"`
	Title    string      `json:"title"`
	CID      int64       `json:"cid"`
	Duration int         `json:"duration"`
	Pages    []VideoPage `json:"pages"`
}

// DashStream is a single adaptive sub-stream. ID carries the quality code
// for video streams; Bandwidth ranks audio streams.
type DashStream struct {
	ID        int    `json:"id"`
	BaseURL   string `json:"baseUrl"`
	Bandwidth int    `json:"bandwidth"`
	Codecs    string `json:"codecs"`
}

// DashInfo groups the adaptive video and audio stream lists.
type DashInfo struct {
	Video []DashStream `json:"video"`
	Audio []DashStream `json:"audio"`
}

// DurlSegment is one segment of a legacy combined stream. The first
// segment's URL is the one downloaded.
type DurlSegment struct {
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// PlayInfo is the playback negotiation response. Quality echoes the
// negotiated code; exactly one of Dash or Durl is expected to be usable.
type PlayInfo struct {
	Quality int           `json:"quality"`
	Dash    *DashInfo     `json:"dash"`
	Durl    []DurlSegment `json:"durl"`
}

// qrChallenge is the device-login challenge payload.
type qrChallenge struct {
	URL       string `json:"url"`
	QRCodeKey string `json:"qrcode_key"`
}

// qrPollData is the inner poll state. Code 0 means confirmed; 86038 means
// the challenge expired; every other value means keep polling.
type qrPollData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
