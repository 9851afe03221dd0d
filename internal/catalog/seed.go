package catalog

import "time"

// seedData 是数据库不可用时展示的示例数据。
// 每个内存存储实例都持有自己的一份拷贝，互不影响。
type seedData struct {
	apps        []App
	screenshots map[uint][]Screenshot
	comments    map[uint][]Comment
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newSeedData() seedData {
	apps := []App{
		{
			ID:               1,
			Name:             "WhatsApp Messenger",
			PackageName:      "com.whatsapp",
			ShortDescription: "Simple, reliable and secure messaging",
			LongDescription:  "WhatsApp Messenger is a free messaging app. Send and receive messages, calls, photos, videos, documents and voice messages.",
			LogoURL:          "https://play-lh.googleusercontent.com/bYtqbOcTYOlgc6gqZ2rwb8lptHuwlNE75zYJu6Bn076-hTmvd96HH-6v7S0YUAAJXoJN=w240-h480",
			ApkURL:           "/uploads/apks/whatsapp.apk",
			Version:          "2.23.15.76",
			SizeMB:           65.2,
			Category:         "Communication",
			Downloads:        5000000000,
			Likes:            12500000,
			CreatedAt:        mustTime("2023-01-15T10:00:00Z"),
			UpdatedAt:        mustTime("2023-08-12T15:30:00Z"),
		},
		{
			ID:               2,
			Name:             "Instagram",
			PackageName:      "com.instagram.android",
			ShortDescription: "Create and share photos, stories and reels with friends",
			LongDescription:  "Instagram connects you with friends and lets you share what you are up to or see what is happening in the world.",
			LogoURL:          "https://play-lh.googleusercontent.com/ZyWNGIfzUyoajtFcD7NhMksHEZh37f-MkHVGr5Yfefa-IX7yj9SMfI82Z7a2wpdKCA=w240-h480",
			ApkURL:           "/uploads/apks/instagram.apk",
			Version:          "295.0.0.32.123",
			SizeMB:           89.5,
			Category:         "Multimedia",
			Downloads:        2000000000,
			Likes:            8200000,
			CreatedAt:        mustTime("2023-02-10T14:20:00Z"),
			UpdatedAt:        mustTime("2023-08-11T09:15:00Z"),
		},
		{
			ID:               3,
			Name:             "TikTok",
			PackageName:      "com.zhiliaoapp.musically",
			ShortDescription: "Short videos to discover and create",
			LongDescription:  "TikTok is the leading destination for short-form mobile video.",
			LogoURL:          "https://play-lh.googleusercontent.com/z5jVRNKR3LC3lYhUKcfOzJEKpu5-_Wn0hj5cCEq6_-p6rTUCHMlH5j2lMOUwIXcpDA=w240-h480",
			ApkURL:           "/uploads/apks/tiktok.apk",
			Version:          "31.5.4",
			SizeMB:           156.8,
			Category:         "Entertainment",
			Downloads:        3500000000,
			Likes:            15600000,
			CreatedAt:        mustTime("2023-03-05T11:45:00Z"),
			UpdatedAt:        mustTime("2023-08-10T16:22:00Z"),
		},
		{
			ID:               4,
			Name:             "YouTube",
			PackageName:      "com.google.android.youtube",
			ShortDescription: "Watch videos, music and live content",
			LongDescription:  "The official YouTube app for Android phones and tablets.",
			LogoURL:          "https://play-lh.googleusercontent.com/lMoItBgdPPVDJsNOVtP26EKHePkwBg-PkuY9NOrc-fumRtTFP4XhpUNk_22syN4Datc=w240-h480",
			ApkURL:           "/uploads/apks/youtube.apk",
			Version:          "18.33.40",
			SizeMB:           118.7,
			Category:         "Entertainment",
			Downloads:        10000000000,
			Likes:            25000000,
			CreatedAt:        mustTime("2023-01-20T08:30:00Z"),
			UpdatedAt:        mustTime("2023-08-12T12:00:00Z"),
		},
		{
			ID:               5,
			Name:             "Spotify",
			PackageName:      "com.spotify.music",
			ShortDescription: "Music and podcasts",
			LongDescription:  "Spotify is a digital music service that gives you access to millions of songs.",
			LogoURL:          "https://play-lh.googleusercontent.com/cShys-AmJ93dB0SV8kE6Fl5eSaf4-qMMZdwEDKI5VEmKAXfzOqbiaeAsqqrEBCTdIEs=w240-h480",
			ApkURL:           "/uploads/apks/spotify.apk",
			Version:          "8.8.52.488",
			SizeMB:           78.3,
			Category:         "Multimedia",
			Downloads:        1000000000,
			Likes:            6800000,
			CreatedAt:        mustTime("2023-02-28T13:15:00Z"),
			UpdatedAt:        mustTime("2023-08-09T10:45:00Z"),
		},
		{
			ID:               6,
			Name:             "Telegram",
			PackageName:      "org.telegram.messenger",
			ShortDescription: "Fast and secure messaging",
			LongDescription:  "Telegram is a messaging app with a focus on speed and security.",
			LogoURL:          "https://play-lh.googleusercontent.com/ZU9cSsyIJZo6Oy7HTHiEPwZg0m2Crep-d5ZrfajqtsH-qgUXSqKpNA2FpPDTn-7qA5Q=w240-h480",
			ApkURL:           "/uploads/apks/telegram.apk",
			Version:          "10.0.7",
			SizeMB:           52.1,
			Category:         "Communication",
			Downloads:        500000000,
			Likes:            4200000,
			CreatedAt:        mustTime("2023-03-12T16:40:00Z"),
			UpdatedAt:        mustTime("2023-08-08T14:20:00Z"),
		},
	}

	comments := map[uint][]Comment{
		1: {
			{ID: 1, AppID: 1, Username: "Carlos123", Content: "Great app, I use it every day.", CreatedAt: mustTime("2023-08-10T10:15:00Z")},
			{ID: 2, AppID: 1, Username: "Maria_Dev", Content: "Very useful to keep in touch with family.", CreatedAt: mustTime("2023-08-11T14:30:00Z")},
		},
		2: {
			{ID: 3, AppID: 2, Username: "PhotoLover", Content: "I love sharing my photos here.", CreatedAt: mustTime("2023-08-09T18:45:00Z")},
		},
		3: {
			{ID: 4, AppID: 3, Username: "DanceFan", Content: "The videos are super entertaining!", CreatedAt: mustTime("2023-08-12T09:20:00Z")},
		},
	}

	screenshots := map[uint][]Screenshot{
		1: {
			{ID: 1, AppID: 1, ImageURL: "https://play-lh.googleusercontent.com/WPaGEI2z_SdGTDNRnH-8rJ8RzG_SZCKnJUh6dXQn2q4B8I7XVF_qDKkCBzX_8vZbgQ=w526-h296", Position: 0, CreatedAt: mustTime("2023-01-15T10:00:00Z")},
			{ID: 2, AppID: 1, ImageURL: "https://play-lh.googleusercontent.com/REqYyNnJm-P9-m9z2rTm2k7X-VY4v9FZF-nT5D_cX8nQ2qRJ6Uf_8QpG9VsD-X2Y=w526-h296", Position: 1, CreatedAt: mustTime("2023-01-15T10:00:00Z")},
		},
	}

	return seedData{apps: apps, screenshots: screenshots, comments: comments}
}
