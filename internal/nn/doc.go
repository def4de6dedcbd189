// Package nn implements the small sequential convolutional network used to classify
// handwritten digits: layers, softmax cross-entropy training with Adam, evaluation and
// the on-disk model artifact.
//
// Activations use an HWC layout, so a flatten between a convolutional stage and a
// dense layer is a plain copy.
package nn
