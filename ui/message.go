package ui

import (
	"context"
	"fmt"
	"os"
	"time"

	"askforge-client/api"
	"askforge-client/chat"
	"askforge-client/utils"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

const (
	userImageWidth  = 300
	downloadTimeout = 60 * time.Second
)

// newSelectableText creates a read-only, selectable text widget.
func newSelectableText(text string) *widget.Label {
	label := widget.NewLabel(text)
	label.Wrapping = fyne.TextWrapWord
	label.Selectable = true
	return label
}

// bubble puts content on a tinted background, aligned right for the user
// and left for the assistant.
func bubble(content fyne.CanvasObject, fill fyne.CanvasObject, right bool) fyne.CanvasObject {
	box := container.NewStack(fill, container.NewPadded(content))
	if right {
		return container.NewBorder(nil, nil, layout.NewSpacer(), nil,
			container.NewGridWithColumns(1, box))
	}
	return box
}

// buildMessage renders the session message at index. question is the user
// message an assistant answer replies to; it enables the feedback buttons.
func (cs *ChatScreen) buildMessage(index int, question string) fyne.CanvasObject {
	msg := cs.session.Messages[index]
	if msg.Role == api.RoleUser {
		return cs.buildUserMessage(msg)
	}
	var tracker *chat.FeedbackTracker
	if question != "" {
		tracker = cs.session.Feedback(index, cs.app.client, question)
	}
	return cs.buildAssistantMessage(msg, tracker)
}

func (cs *ChatScreen) buildUserMessage(msg api.Message) fyne.CanvasObject {
	body := container.NewVBox()

	if msg.ImageData != "" {
		if img, err := utils.DecodeDataURI(msg.ImageData); err == nil {
			ci := canvas.NewImageFromImage(utils.ScaleToWidth(img, userImageWidth))
			ci.FillMode = canvas.ImageFillOriginal
			body.Add(ci)
		} else {
			cs.app.logger.Warn("Failed to display attached image: %v", err)
		}
	} else if msg.ImageURL != "" {
		body.Add(cs.remoteImage(msg.ImageURL, "Imagem enviada"))
	}

	if msg.Content != "" && !(msg.HasImage() && msg.Content == "[Imagem enviada]") {
		body.Add(newSelectableText(msg.Content))
	}

	fill := canvas.NewRectangle(userBubble)
	fill.CornerRadius = 8
	row := container.NewBorder(nil, nil, nil, widget.NewLabel("👤"), bubble(body, fill, true))
	return container.NewPadded(row)
}

func (cs *ChatScreen) buildAssistantMessage(msg api.Message, tracker *chat.FeedbackTracker) fyne.CanvasObject {
	body := container.NewVBox()
	for _, seg := range chat.ParseContent(msg.Content, cs.session.KnownAttachments()) {
		switch seg.Kind {
		case chat.SegmentText:
			body.Add(newSelectableText(seg.Text))
		case chat.SegmentImage:
			body.Add(cs.remoteImage(seg.URL, seg.Alt))
		case chat.SegmentAttachment:
			body.Add(cs.attachmentCard(seg))
		}
	}

	fill := canvas.NewRectangle(botBubble)
	fill.CornerRadius = 8
	content := container.NewVBox(bubble(body, fill, false))

	if tracker != nil {
		content.Add(cs.feedbackButtons(tracker))
	}

	row := container.NewBorder(nil, nil, widget.NewLabel("🤖"), nil, content)
	return container.NewPadded(row)
}

// remoteImage shows a loading label and replaces it with the image once
// downloaded, or with a link to open it in the browser.
func (cs *ChatScreen) remoteImage(rawURL, alt string) fyne.CanvasObject {
	holder := container.NewStack(widget.NewLabel(fmt.Sprintf("📷 Carregando: %s...", alt)))

	utils.SafeGo(cs.app.logger, "load image", func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		var ci *canvas.Image
		data, err := cs.app.client.FetchImage(ctx, rawURL)
		if err == nil {
			img, derr := utils.DecodeImage(data)
			if derr == nil {
				ci = canvas.NewImageFromImage(utils.ScaleToWidth(img, utils.MaxDisplayWidth))
				ci.FillMode = canvas.ImageFillOriginal
			}
			err = derr
		}
		if err != nil {
			cs.app.logger.Warn("Failed to load image %s: %v", rawURL, err)
		}

		fyne.Do(func() {
			if ci == nil {
				open := widget.NewButton("Abrir imagem no navegador", func() { cs.app.openURL(rawURL) })
				open.Importance = widget.LowImportance
				holder.Objects = []fyne.CanvasObject{container.NewVBox(widget.NewLabel("🖼️ "+alt), open)}
			} else {
				open := widget.NewButton("", func() { cs.app.openURL(rawURL) })
				open.Importance = widget.LowImportance
				holder.Objects = []fyne.CanvasObject{ci, open}
			}
			holder.Refresh()
		})
	})
	return holder
}

func (cs *ChatScreen) attachmentCard(seg chat.Segment) fyne.CanvasObject {
	name := widget.NewLabel("📎 " + seg.Name)
	name.Wrapping = fyne.TextWrapWord

	open := widget.NewButton("🔗 Abrir", func() { cs.app.openURL(seg.URL) })
	open.Importance = widget.LowImportance
	download := widget.NewButton("⬇️ Baixar", func() { cs.downloadAttachment(seg.URL, seg.Name) })
	download.Importance = widget.LowImportance

	return widget.NewCard("", "", container.NewVBox(name, container.NewHBox(open, download)))
}

// downloadAttachment asks where to save and downloads in the background.
func (cs *ChatScreen) downloadAttachment(rawURL, name string) {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			cs.app.showError("Erro ao baixar: " + err.Error())
			return
		}
		if writer == nil {
			return
		}
		path := writer.URI().Path()

		utils.SafeGo(cs.app.logger, "download attachment", func() {
			defer writer.Close()
			ctx, cancel := context.WithTimeout(context.Background(), downloadTimeout)
			defer cancel()

			data, err := cs.app.client.Download(ctx, rawURL)
			if err == nil {
				_, err = writer.Write(data)
			}
			fyne.Do(func() {
				if err != nil {
					cs.app.logger.Error("Download of %s failed: %v", rawURL, err)
					os.Remove(path)
					cs.app.showError("Erro ao baixar arquivo")
					return
				}
				cs.app.showInfo("Download concluído", "Arquivo salvo em:\n"+path)
			})
		})
	}, cs.app.window)
	fd.SetFileName(name)
	fd.Show()
}

// feedbackButtons renders 👍/👎. Repeating the current choice does nothing.
func (cs *ChatScreen) feedbackButtons(tracker *chat.FeedbackTracker) fyne.CanvasObject {
	var up, down *widget.Button
	paint := func(polarity string) {
		up.Importance, down.Importance = widget.LowImportance, widget.LowImportance
		switch polarity {
		case api.FeedbackPositive:
			up.Importance = widget.SuccessImportance
		case api.FeedbackNegative:
			down.Importance = widget.DangerImportance
		}
		up.Refresh()
		down.Refresh()
	}
	rate := func(polarity string) {
		if tracker.Current() == polarity {
			return
		}
		paint(polarity)
		utils.SafeGo(cs.app.logger, "send feedback", func() {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			if _, err := tracker.Rate(ctx, polarity); err != nil {
				cs.app.logger.Warn("Failed to send feedback: %v", err)
			}
		})
	}

	up = widget.NewButton("👍", func() { rate(api.FeedbackPositive) })
	down = widget.NewButton("👎", func() { rate(api.FeedbackNegative) })
	paint(tracker.Current())
	return container.NewHBox(up, down)
}
