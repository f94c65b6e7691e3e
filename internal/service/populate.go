package service

import (
	"context"

	"nexchat/internal/model"
	"nexchat/internal/repo"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// populateMessages expands sender, receiver and reaction identities for
// a batch of messages with a single summary lookup.
func populateMessages(ctx context.Context, users repo.UserRepository, messages []model.Message) ([]model.PopulatedMessage, error) {
	idSet := make(map[primitive.ObjectID]struct{})
	for i := range messages {
		idSet[messages[i].SenderID] = struct{}{}
		idSet[messages[i].ReceiverID] = struct{}{}
		for _, r := range messages[i].Reactions {
			idSet[r.UserID] = struct{}{}
		}
	}

	summaries, err := users.Summaries(ctx, idSetToSlice(idSet))
	if err != nil {
		return nil, err
	}

	populated := make([]model.PopulatedMessage, 0, len(messages))
	for i := range messages {
		populated = append(populated, populateOne(&messages[i], summaries))
	}
	return populated, nil
}

func populateOne(msg *model.Message, summaries map[primitive.ObjectID]model.UserSummary) model.PopulatedMessage {
	reactions := make([]model.PopulatedReaction, 0, len(msg.Reactions))
	for _, r := range msg.Reactions {
		reactions = append(reactions, model.PopulatedReaction{
			User:  summaries[r.UserID],
			Emoji: r.Emoji,
		})
	}

	return model.PopulatedMessage{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Sender:         summaries[msg.SenderID],
		Receiver:       summaries[msg.ReceiverID],
		Content:        msg.Content,
		ContentType:    msg.ContentType,
		MediaURL:       msg.MediaURL,
		Reactions:      reactions,
		Status:         msg.Status,
		CreatedAt:      msg.CreatedAt,
	}
}

func idSetToSlice(set map[primitive.ObjectID]struct{}) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}
