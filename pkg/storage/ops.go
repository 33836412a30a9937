package storage

// Operation names used in taxonomy error messages. Shared by the
// implementations so that "Error getting the user by email" reads the same
// whichever store is behind the interface.
const (
	OpAddUser           = "adding the user"
	OpGetUsers          = "getting the users"
	OpGetUserByEmail    = "getting the user by email"
	OpGetUserByUsername = "getting the user by username"
	OpGetUser           = "getting the user by id"
	OpUpdateUser        = "updating the user"
	OpDeleteUser        = "deleting the user"
	OpChangePassword    = "changing the password"

	OpAddPost       = "adding the post"
	OpGetPosts      = "getting the posts"
	OpGetPost       = "getting the post by id"
	OpUpdatePost    = "updating the post"
	OpDeletePost    = "deleting the post"
	OpAttachComment = "attaching the comment to the post"
	OpDetachComment = "detaching the comment from the post"

	OpAddComment    = "adding the comment"
	OpGetComments   = "getting the comments"
	OpGetComment    = "getting the comment by id"
	OpUpdateComment = "updating the comment"
	OpDeleteComment = "deleting the comment"
)
