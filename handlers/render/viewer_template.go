package render

import "html/template"

var viewerTemplate = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Generated Content</title>
    <style>
        body {
            display: flex;
            flex-direction: column;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #f0f0f0;
            font-family: Arial, sans-serif;
        }
        .content {
            max-width: 800px;
            padding: 20px;
            text-align: center;
        }
        .message {
            white-space: pre-wrap;
            text-align: left;
        }
        img {
            max-width: 90%;
            max-height: 70vh;
            box-shadow: 0 0 20px rgba(0,0,0,0.1);
            margin: 20px 0;
        }
        .audio-player {
            width: 100%;
            max-width: 500px;
            margin: 20px 0;
            padding: 20px;
            background: white;
            border-radius: 10px;
            box-shadow: 0 0 10px rgba(0,0,0,0.1);
        }
        audio {
            width: 100%;
        }
    </style>
</head>
<body>
    <div class="content">
        {{- if .Image}}
        <img src="/generated_images/{{.Image}}" alt="Generated Image">
        {{- end}}
        <p class="message">{{.Text}}</p>
        {{- if .Audio}}
        <div class="audio-player">
            <h3>Audio Response</h3>
            <audio controls>
                <source src="/generated_audio/{{.Audio}}" type="{{.AudioType}}">
                Your browser does not support the audio element.
            </audio>
        </div>
        {{- end}}
    </div>
</body>
</html>
`))

type viewerData struct {
	Text      string
	Image     string
	Audio     string
	AudioType string
}
