package incident

import (
	"strings"

	"github.com/slack-go/slack"
)

const (
	ModalCallbackID = "incident_modal"

	TitleBlockID       = "title_block"
	TitleActionID      = "title"
	DescriptionBlockID = "description_block"
	DescriptionAction  = "description"
	UrgencyBlockID     = "urgency_block"
	UrgencyActionID    = "urgency"
)

func plainText(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, true, false)
}

func urgencyOption(u Urgency) *slack.OptionBlockObject {
	label := strings.ToUpper(string(u[:1])) + string(u[1:])
	return slack.NewOptionBlockObject(string(u), plainText(label), nil)
}

// NewModalView builds the incident form. The channel context rides along as private metadata.
func NewModalView(cc ChannelContext) slack.ModalViewRequest {
	title := slack.NewInputBlock(
		TitleBlockID,
		plainText("Title"),
		nil,
		slack.NewPlainTextInputBlockElement(plainText("Enter incident title"), TitleActionID),
	)

	descriptionInput := slack.NewPlainTextInputBlockElement(plainText("Describe the incident"), DescriptionAction)
	descriptionInput.Multiline = true
	description := slack.NewInputBlock(DescriptionBlockID, plainText("Description"), nil, descriptionInput)
	description.Optional = true

	urgencySelect := slack.NewOptionsSelectBlockElement(
		slack.OptTypeStatic,
		plainText("Select urgency level"),
		UrgencyActionID,
		urgencyOption(UrgencyCritical),
		urgencyOption(UrgencyHigh),
		urgencyOption(UrgencyMedium),
		urgencyOption(UrgencyLow),
	)
	urgencySelect.InitialOption = urgencyOption(DefaultUrgency)
	urgency := slack.NewInputBlock(UrgencyBlockID, plainText("Urgency"), nil, urgencySelect)

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      ModalCallbackID,
		Title:           plainText("Create Incident"),
		Submit:          plainText("Create"),
		Close:           plainText("Cancel"),
		Blocks:          slack.Blocks{BlockSet: []slack.Block{title, description, urgency}},
		PrivateMetadata: cc.Encode(),
		ClearOnClose:    true,
		NotifyOnClose:   false,
	}
}

// FormValues are the raw values read back from a submitted incident modal.
type FormValues struct {
	Title       string
	Description string
	Urgency     Urgency
}

func ReadFormValues(view slack.View) FormValues {
	var v FormValues
	if view.State == nil {
		v.Urgency = DefaultUrgency
		return v
	}

	values := view.State.Values
	v.Title = strings.TrimSpace(values[TitleBlockID][TitleActionID].Value)
	v.Description = strings.TrimSpace(values[DescriptionBlockID][DescriptionAction].Value)
	v.Urgency = Urgency(strings.ToLower(values[UrgencyBlockID][UrgencyActionID].SelectedOption.Value))
	if v.Urgency == "" {
		v.Urgency = DefaultUrgency
	}

	return v
}
