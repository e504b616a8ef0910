package models

import (
	"io"
	"time"
)

// User represents an account within the VidTube platform.
type User struct {
	ID           string
	Fullname     string
	Username     string
	Email        string
	PasswordHash string
	Avatar       MediaRef
	CoverImage   MediaRef
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MediaRef points at an object held by remote media storage. Key is used for
// deletion, URL is what clients render.
type MediaRef struct {
	Key string
	URL string
}

// IsZero reports whether the reference is unset.
func (m MediaRef) IsZero() bool {
	return m.Key == "" && m.URL == ""
}

// PublicUser is the sanitized user shape returned to clients. It never
// carries the password hash or any session material.
type PublicUser struct {
	ID         string    `json:"id"`
	Fullname   string    `json:"fullname"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Public returns the sanitized projection of the user.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Fullname:   u.Fullname,
		Username:   u.Username,
		Email:      u.Email,
		Avatar:     u.Avatar.URL,
		CoverImage: u.CoverImage.URL,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// Subscription is a directed edge from a subscriber to a channel.
type Subscription struct {
	ID           string
	SubscriberID string
	ChannelID    string
	CreatedAt    time.Time
}

// Video stores the metadata of an uploaded video.
type Video struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"-"`
	VideoFile       string    `json:"videoFile"`
	Thumbnail       string    `json:"thumbnail"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DurationSeconds float64   `json:"duration"`
	Views           int64     `json:"views"`
	IsPublished     bool      `json:"isPublished"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// VideoOwner is the minimal public projection of a video's owner.
type VideoOwner struct {
	Fullname string `json:"fullname"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// WatchHistoryEntry is a video from a user's history with its owner reduced
// to the public projection.
type WatchHistoryEntry struct {
	Video
	Owner VideoOwner `json:"owner"`
}

// ChannelProfile is the public view of a channel as seen by a viewer.
type ChannelProfile struct {
	ID                   string `json:"id"`
	Fullname             string `json:"fullname"`
	Username             string `json:"username"`
	Email                string `json:"email"`
	Avatar               string `json:"avatar"`
	CoverImage           string `json:"coverImage"`
	SubscribersCount     int64  `json:"subscribersCount"`
	ChannelsSubscribedTo int64  `json:"channelsSubscribedToCount"`
	IsSubscribed         bool   `json:"isSubscribed"`
}

// MediaUpload is a file received from a client, destined for media storage.
type MediaUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
